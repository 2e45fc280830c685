package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Interview Practice</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
</head>
<body>
<main class="container">
    <h1>Interview Practice</h1>
    <label>Question
        <select id="question"></select>
    </label>
    <p id="status">Loading...</p>
    <div role="group">
        <button onclick="post('/start', new URLSearchParams({question_id: document.getElementById('question').value}))">Start</button>
        <button onclick="post('/pause')">Pause</button>
        <button onclick="post('/resume')">Resume</button>
        <button onclick="post('/stop')">Stop</button>
        <button onclick="post('/reset')" class="secondary">Reset</button>
        <button onclick="post('/submit')" class="contrast">Submit</button>
    </div>
    <audio id="player" controls hidden></audio>
    <pre id="result"></pre>
</main>
<script>
async function post(path, body) {
    const res = await fetch(path, {method: 'POST', body: body});
    const data = await res.json();
    document.getElementById('result').textContent = JSON.stringify(data, null, 2);
    refresh();
}
async function refresh() {
    const s = await (await fetch('/status')).json();
    document.getElementById('status').textContent = s.state + (s.message ? ' - ' + s.message : '');
    const player = document.getElementById('player');
    if (s.artifact_url) {
        if (player.hidden) { player.src = s.artifact_url + '?t=' + Date.now(); }
        player.hidden = false;
    } else {
        player.hidden = true;
        player.removeAttribute('src');
    }
}
async function loadQuestions() {
    const questions = await (await fetch('/questions')).json();
    const select = document.getElementById('question');
    (questions || []).forEach(q => {
        const opt = document.createElement('option');
        opt.value = q.id;
        opt.textContent = q.question_text;
        select.appendChild(opt);
    });
}
loadQuestions();
refresh();
setInterval(refresh, 1000);
</script>
</body>
</html>`
